package internal

import (
	"clarity/internal/controllers"
	"clarity/internal/providers"
	"net/http"
)

func InitRoutes(apiController *controllers.ApiController) providers.RouterProviderInterface {
	routers := providers.NewRouterProvider()

	routers.Get("/institution", http.HandlerFunc(apiController.Institution))
	routers.Get("/dashboard/stats", http.HandlerFunc(apiController.DashboardStats))
	routers.Get("/dashboard/charts", http.HandlerFunc(apiController.ChartSeries))
	routers.Get("/leads/recent", http.HandlerFunc(apiController.RecentLeads))
	routers.Handle("/leads", map[string]http.Handler{
		http.MethodGet:  http.HandlerFunc(apiController.Leads),
		http.MethodPost: http.HandlerFunc(apiController.ReceiveLead),
	})
	routers.Post("/leads/reset", http.HandlerFunc(apiController.ResetLeads))
	routers.Handle("/programs", map[string]http.Handler{
		http.MethodGet:    http.HandlerFunc(apiController.Programs),
		http.MethodPost:   http.HandlerFunc(apiController.CreateProgram),
		http.MethodPut:    http.HandlerFunc(apiController.UpdateProgram),
		http.MethodDelete: http.HandlerFunc(apiController.DeleteProgram),
	})
	routers.Post("/notifications/read", http.HandlerFunc(apiController.MarkNotificationRead))
	routers.Get("/coupons", http.HandlerFunc(apiController.LookupCoupon))
	routers.Post("/payments/verify", http.HandlerFunc(apiController.VerifyPayment))
	routers.Post("/cache/clear", http.HandlerFunc(apiController.ClearCache))
	routers.Get("/subscribe", http.HandlerFunc(apiController.Subscribe))
	return routers
}
