// Package ports declares the persistence contracts the engine depends
// on. Adapters under pkg/adapters provide the implementations; the
// engine core only ever sees these interfaces.
package ports
