// Package plugin defines the descriptor model for plugind extension units:
// categories, lifecycle events, hook records, the structural validator that
// gates admission into the registry, and the error taxonomy shared by the
// engine packages.
//
// A plugin is a named, versioned unit declaring capabilities, dependencies
// on other plugins, and hooks bound to lifecycle events. The engine treats
// the exec body and hook handlers as opaque callables; nothing in this
// package runs them.
package plugin
