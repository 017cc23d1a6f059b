// Package graph provides pure helpers over a static step list.
package graph
