package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/isp-backoffice/internal/api/handler"
	"github.com/isp-backoffice/internal/api/middleware"
	"github.com/isp-backoffice/internal/metrics"
	"github.com/isp-backoffice/internal/service"
	"github.com/isp-backoffice/internal/tasks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options 路由依赖; Gatherer 为空时不暴露 /metrics
type Options struct {
	Services    *service.Services
	Queue       tasks.Enqueuer
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	CorsOrigins []string
}

func SetupRouter(opts Options) *gin.Engine {
	router := gin.New()
	router.Use(middleware.LoggerMiddleware())
	router.Use(gin.Recovery())
	router.Use(middleware.Metrics(opts.Metrics))
	if len(opts.CorsOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     opts.CorsOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if opts.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	svc := opts.Services
	authHandler := handler.NewAuthHandler(svc.Auth)
	customerHandler := handler.NewCustomerHandler(svc)
	currencyHandler := handler.NewCurrencyHandler(svc)
	invoiceHandler := handler.NewInvoiceHandler(svc)
	paymentHandler := handler.NewPaymentHandler(svc)
	registrarHandler := handler.NewRegistrarHandler(svc, opts.Queue)
	domainHandler := handler.NewDomainHandler(svc)
	dnsHandler := handler.NewDnsHandler(svc)
	hostingHandler := handler.NewHostingHandler(svc, opts.Queue)
	emailHandler := handler.NewEmailHandler(svc)

	apiV1 := router.Group("/api/v1")
	apiV1.POST("/auth/login", authHandler.Login)

	authed := apiV1.Group("", middleware.Authenticate(svc.Auth))
	{
		authed.GET("/auth/me", authHandler.Me)
		authed.GET("/dashboard", emailHandler.Dashboard)

		users := authed.Group("/users", middleware.RequireAdmin())
		{
			users.GET("", authHandler.GetUsers)
			users.POST("", authHandler.CreateUser)
			users.PUT("/:id/active", authHandler.SetActive)
		}

		customers := authed.Group("/customers")
		{
			customers.GET("", customerHandler.GetCustomers)
			customers.POST("", customerHandler.CreateCustomer)
			customers.GET("/:id", customerHandler.GetCustomerByID)
			customers.PUT("/:id", customerHandler.UpdateCustomer)
			customers.DELETE("/:id", customerHandler.DeleteCustomer)

			customers.GET("/:id/payment-methods", customerHandler.GetPaymentMethods)
			customers.POST("/:id/payment-methods", customerHandler.CreatePaymentMethod)
			customers.PUT("/:id/payment-methods/:methodId", customerHandler.UpdatePaymentMethod)
			customers.DELETE("/:id/payment-methods/:methodId", customerHandler.DeletePaymentMethod)
			customers.POST("/:id/payment-methods/:methodId/default", customerHandler.SetDefaultPaymentMethod)

			customers.GET("/:id/credit", customerHandler.GetCreditBalance)
			customers.GET("/:id/credit/transactions", customerHandler.GetCreditTransactions)
			customers.POST("/:id/credit", customerHandler.AddCredit)
			customers.POST("/:id/credit/remove", customerHandler.RemoveCredit)
		}
		authed.POST("/credits/apply", customerHandler.ApplyCredit)

		currencies := authed.Group("/currencies")
		{
			currencies.GET("", currencyHandler.GetCurrencies)
			currencies.GET("/convert", currencyHandler.Convert)
			currencies.GET("/:id", currencyHandler.GetCurrencyByID)
		}
		taxRules := authed.Group("/tax-rules")
		{
			taxRules.GET("", currencyHandler.GetTaxRules)
			taxRules.GET("/:id", currencyHandler.GetTaxRuleByID)
			taxRules.POST("/calculate", currencyHandler.CalculateTax)
		}

		invoices := authed.Group("/invoices")
		{
			invoices.GET("", invoiceHandler.GetInvoices)
			invoices.POST("", invoiceHandler.CreateInvoice)
			invoices.GET("/:id", invoiceHandler.GetInvoiceByID)
			invoices.PUT("/:id", invoiceHandler.UpdateInvoice)
			invoices.DELETE("/:id", invoiceHandler.DeleteInvoice)
			invoices.POST("/:id/recalculate", invoiceHandler.RecalculateInvoice)
			invoices.POST("/:id/issue", invoiceHandler.IssueInvoice)
			invoices.POST("/:id/cancel", invoiceHandler.CancelInvoice)
		}

		quotes := authed.Group("/quotes")
		{
			quotes.GET("", invoiceHandler.GetQuotes)
			quotes.POST("", invoiceHandler.CreateQuote)
			quotes.GET("/:id", invoiceHandler.GetQuoteByID)
			quotes.PUT("/:id", invoiceHandler.UpdateQuote)
			quotes.DELETE("/:id", invoiceHandler.DeleteQuote)
			quotes.POST("/:id/send", invoiceHandler.SendQuote)
			quotes.POST("/:id/accept", invoiceHandler.AcceptQuote)
			quotes.POST("/:id/reject", invoiceHandler.RejectQuote)
			quotes.POST("/:id/convert", invoiceHandler.ConvertQuote)
		}

		payments := authed.Group("/payments")
		{
			payments.GET("", paymentHandler.GetPayments)
			payments.POST("", paymentHandler.RecordPayment)
			payments.POST("/charge", paymentHandler.Charge)
			payments.GET("/:id", paymentHandler.GetPaymentByID)
		}
		intents := authed.Group("/payment-intents")
		{
			intents.GET("", paymentHandler.GetPaymentIntents)
			intents.POST("", paymentHandler.CreatePaymentIntent)
			intents.GET("/:id", paymentHandler.GetPaymentIntentByID)
			intents.POST("/:id/confirm", paymentHandler.ConfirmPaymentIntent)
			intents.POST("/:id/cancel", paymentHandler.CancelPaymentIntent)
		}
		refunds := authed.Group("/refunds")
		{
			refunds.GET("", paymentHandler.GetRefunds)
			refunds.POST("", paymentHandler.CreateRefund)
			refunds.GET("/:id", paymentHandler.GetRefundByID)
		}

		registrars := authed.Group("/registrars")
		{
			registrars.GET("", registrarHandler.GetRegistrars)
			registrars.GET("/:id", registrarHandler.GetRegistrarByID)
		}
		tlds := authed.Group("/tlds")
		{
			tlds.GET("", registrarHandler.GetTlds)
			tlds.GET("/:id", registrarHandler.GetTldByID)
			tlds.GET("/:id/prices", registrarHandler.GetTldPrices)
		}
		prices := authed.Group("/tld-prices")
		{
			prices.GET("", registrarHandler.GetPrices)
			prices.GET("/:id", registrarHandler.GetPriceByID)
		}

		domains := authed.Group("/domains")
		{
			domains.GET("", domainHandler.GetDomains)
			domains.POST("", domainHandler.CreateDomain)
			domains.GET("/availability", domainHandler.CheckAvailability)
			domains.GET("/expiring", domainHandler.GetExpiring)
			domains.GET("/:id", domainHandler.GetDomainByID)
			domains.PUT("/:id", domainHandler.UpdateDomain)
			domains.DELETE("/:id", domainHandler.DeleteDomain)
			domains.POST("/:id/register", domainHandler.Register)
			domains.POST("/:id/renew", domainHandler.Renew)
			domains.PUT("/:id/nameservers", domainHandler.UpdateNameservers)
		}

		zones := authed.Group("/dns-zones")
		{
			zones.GET("", dnsHandler.GetZones)
			zones.POST("", dnsHandler.CreateZone)
			zones.GET("/:id", dnsHandler.GetZoneByID)
			zones.PUT("/:id", dnsHandler.UpdateZone)
			zones.DELETE("/:id", dnsHandler.DeleteZone)
			zones.GET("/:id/export", dnsHandler.ExportZone)
			zones.GET("/:id/records", dnsHandler.GetRecords)
			zones.POST("/:id/records", dnsHandler.CreateRecord)
			zones.PUT("/:id/records/:recordId", dnsHandler.UpdateRecord)
			zones.DELETE("/:id/records/:recordId", dnsHandler.DeleteRecord)
		}

		hosting := authed.Group("/hosting")
		{
			hosting.GET("/servers", hostingHandler.GetServers)
			hosting.GET("/servers/:id", hostingHandler.GetServerByID)
			hosting.GET("/packages", hostingHandler.GetPackages)
			hosting.GET("/packages/:id", hostingHandler.GetPackageByID)

			hosting.GET("/accounts", hostingHandler.GetAccounts)
			hosting.POST("/accounts", hostingHandler.CreateAccount)
			hosting.GET("/accounts/:id", hostingHandler.GetAccountByID)
			hosting.PUT("/accounts/:id", hostingHandler.UpdateAccount)
			hosting.DELETE("/accounts/:id", hostingHandler.DeleteAccount)
			hosting.GET("/accounts/:id/emails", hostingHandler.GetEmailAccounts)
			hosting.GET("/accounts/:id/domains", hostingHandler.GetAddonDomains)
			hosting.POST("/accounts/:id/provision", hostingHandler.Provision)
			hosting.POST("/accounts/:id/suspend", hostingHandler.Suspend)
			hosting.POST("/accounts/:id/unsuspend", hostingHandler.Unsuspend)
			hosting.POST("/accounts/:id/terminate", hostingHandler.Terminate)
			hosting.PUT("/accounts/:id/package", hostingHandler.ChangePackage)
		}

		emails := authed.Group("/emails")
		{
			emails.GET("", emailHandler.GetEmails)
			emails.GET("/:id", emailHandler.GetEmailByID)
			emails.POST("/:id/resend", emailHandler.Resend)
		}

		// 以下为配置类接口, 仅管理员可写
		admin := authed.Group("", middleware.RequireAdmin())
		{
			admin.POST("/currencies", currencyHandler.CreateCurrency)
			admin.PUT("/currencies/:id", currencyHandler.UpdateCurrency)
			admin.DELETE("/currencies/:id", currencyHandler.DeleteCurrency)

			admin.POST("/tax-rules", currencyHandler.CreateTaxRule)
			admin.PUT("/tax-rules/:id", currencyHandler.UpdateTaxRule)
			admin.DELETE("/tax-rules/:id", currencyHandler.DeleteTaxRule)

			admin.POST("/registrars", registrarHandler.CreateRegistrar)
			admin.PUT("/registrars/:id", registrarHandler.UpdateRegistrar)
			admin.DELETE("/registrars/:id", registrarHandler.DeleteRegistrar)
			admin.POST("/registrars/sync", registrarHandler.SyncAllPrices)
			admin.POST("/registrars/:id/sync", registrarHandler.SyncPrices)

			admin.POST("/tlds", registrarHandler.CreateTld)
			admin.PUT("/tlds/:id", registrarHandler.UpdateTld)
			admin.DELETE("/tlds/:id", registrarHandler.DeleteTld)

			admin.PUT("/tld-prices", registrarHandler.UpsertPrice)
			admin.DELETE("/tld-prices/:id", registrarHandler.DeletePrice)

			admin.POST("/hosting/servers", hostingHandler.CreateServer)
			admin.PUT("/hosting/servers/:id", hostingHandler.UpdateServer)
			admin.DELETE("/hosting/servers/:id", hostingHandler.DeleteServer)
			admin.POST("/hosting/servers/sync", hostingHandler.SyncAll)
			admin.POST("/hosting/servers/:id/sync", hostingHandler.SyncServer)

			admin.POST("/hosting/packages", hostingHandler.CreatePackage)
			admin.PUT("/hosting/packages/:id", hostingHandler.UpdatePackage)
			admin.DELETE("/hosting/packages/:id", hostingHandler.DeletePackage)
		}
	}

	return router
}
