// Package goicon provides a pure Go library for composing custom app
// icons: a base image scaled and centered over a solid background, clipped
// to a circle or rounded square, and exported as a PNG or ICO file.
//
// The Editor holds the live settings of one widget, the Exporter renders
// them at export resolution, and the Registry manages many independent
// widget instances mounted by a host page or service.
//
// See the Version variable for the current library version.
package goicon
