// Command qd is the quarium daemon and CLI.
//
// quarium keeps a set of named queries against a hosted issue/PR tracker
// synchronized with a single per-user remote document, refreshing each
// query's cached results on a fixed schedule and publishing an attention
// badge when results exceed the user's declared thresholds.
package main

func main() {
	Execute()
}
