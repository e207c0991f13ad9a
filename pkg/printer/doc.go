// Package printer renders installed platform resources for the command line.
package printer
