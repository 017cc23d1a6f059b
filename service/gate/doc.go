// Package gate lets before-change listeners cancel or redirect a transition.
package gate
