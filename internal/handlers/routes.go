package handlers

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the operational endpoints and the /api/v1 resources.
func (h *Handlers) RegisterRoutes(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	r.GET("/live", h.Live)
	r.GET("/version", h.Version)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/orders", h.CreateOrder)
		v1.GET("/orders", h.ListOrders)
		v1.GET("/orders/:id", h.GetOrder)
		v1.PUT("/orders/:id", h.UpdateOrder)
		v1.DELETE("/orders/:id", h.DeleteOrder)

		v1.POST("/products", h.CreateProduct)
		v1.GET("/products", h.ListProducts)
		v1.GET("/products/:id", h.GetProduct)
		v1.PUT("/products/:id", h.UpdateProduct)
		v1.DELETE("/products/:id", h.DeleteProduct)

		v1.POST("/customers", h.CreateCustomer)
		v1.GET("/customers", h.ListCustomers)
		v1.GET("/customers/:id", h.GetCustomer)
		v1.PUT("/customers/:id", h.UpdateCustomer)
		v1.DELETE("/customers/:id", h.DeleteCustomer)
	}
}
