package server

//go:generate swag init -g internal/server/server.go -o internal/server/docs

// @title OfferLens API
// @version 0.1
// @description Affiliate offer validation and scoring.
// @contact.name OfferLens Maintainers
// @contact.url https://github.com/raysh454/offerlens
// @BasePath /
