package services

// ServiceContainer holds instances of all the application services.
// Handlers receive it to reach service functionality.
type ServiceContainer struct {
	ExchangeRate ExchangeRateSvcFacade
}
