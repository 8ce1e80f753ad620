// Culler selects indices and snapshots in a search cluster through
// declarative filter pipelines and reports what an administrative action
// would operate on.
//
// Usage:
//
//	# Plan the actions of an action file against the cluster
//	culler plan actions.yml
//
//	# Run the same plan every night at three
//	culler plan actions.yml --schedule "0 3 * * *"
//
//	# List matching indices or snapshots without filtering
//	culler show indices --pattern "logs-*"
//	culler show snapshots --repository backups
//
//	# Inspect recorded runs
//	culler history
package main

func main() {
	Execute()
}
