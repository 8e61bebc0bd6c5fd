// Package agent provides the per-agent execution shell. A Runtime manages
// the lifecycle state machine (Stopped, Starting, Running, Draining),
// subscribes the hosted Role to the bus topics it needs, and runs the role
// once per announced tick with a bounded input-collection window. Role
// failures degrade to a no-op message for that tick; they never abort the
// tick for other agents.
package agent
