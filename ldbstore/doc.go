// Package ldbstore keeps showdown equity matrices on disk in a LevelDB
// database, so that repeated solves of the same spot do not recompute them.
//
// An EquityStore plugs into an equity.Cache as its persistent layer.
package ldbstore
