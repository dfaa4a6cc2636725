// Package hashspace maps application keys onto a fixed-width hash space
// divided into equal-width virtual node slices.
package hashspace
