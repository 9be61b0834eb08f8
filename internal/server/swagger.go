package server

//go:generate swag init -g internal/server/server.go -o docs/swagger

// @title Clipper API
// @version 0.1
// @description Cut a time window out of an online video and download it as MP4.
// @contact.name Clipper Maintainers
// @contact.url https://github.com/raysh454/clipper
// @BasePath /
