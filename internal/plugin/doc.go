// Package plugin resolves configured "module:attribute" locator strings into
// HTTP routers mounted by the API server. Components are registered in code
// under a locator, either as a ready router or as a factory producing one.
package plugin
