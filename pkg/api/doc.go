// Package api defines the waiver data model, request validation, and the
// error taxonomy shared by the service, storage, and transport layers.
package api
