// Package sim drives the simulation loop. The Coordinator announces ticks,
// collects agent orders within a bounded window, clears the market,
// evaluates grid stability and publishes the results — in that order, so
// that tick N+1 is never announced before tick N's trade set and grid
// verdict are on the bus. Errors degrade the affected tick instead of
// stopping the loop.
package sim
