package server

//go:generate swag init -g internal/server/server.go -o docs/swagger

// @title asyncreq API
// @version 0.1
// @description Submit asynchronous HTTP requests and follow their results.
// @contact.name asyncreq Maintainers
// @contact.url https://github.com/raysh454/asyncreq
// @BasePath /
