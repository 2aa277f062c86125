// Package encoding turns analyzed source files into delivery-ready encodes
// and verifies the results with ffprobe before they leave the stage.
package encoding
