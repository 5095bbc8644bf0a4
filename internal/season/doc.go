// Package season maps timestamps onto sequential monthly season numbers.
//
// A Deriver is anchored at an origin month; season 1 covers the origin month
// and everything before it, and each following calendar month adds one.
package season
