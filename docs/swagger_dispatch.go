package docs

// @title           Dispatch Core API
// @version         1.0
// @description     Dispatch service manages the trip request lifecycle: creation, driver assignment (manual and automatic), status transitions, cancellation and fee quoting. Realtime updates are delivered over the /ws websocket endpoint.
// @termsOfService  http://swagger.io/terms/

// @contact.name   API Support
// @contact.url    http://www.swagger.io/support
// @contact.email  support@swagger.io

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:3000
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
