package main

// General API documentation for swaggo. Regenerate with `swag init -g cmd/llamad/docs.go -o docs`.
//
// @title           llamad API
// @version         1.0
// @description     HTTP API for supervising a llama.cpp process and serving chat completions.
//
// @contact.name   llamad maintainers
// @contact.url    https://github.com/your-org/llamad
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http https
//
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
