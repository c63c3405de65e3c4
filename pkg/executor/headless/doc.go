// Package headless implements the scripted executor for CI and batch runs.
//
// The headless executor drives one run without a terminal attached: it
// connects a fabric port for an already-opened tab, sets the mode from a
// YAML run manifest, submits the manifest task as a chat message, and
// relays every stream event as one JSON object per line on its output.
// The run ends at the first terminal event.
//
// A run manifest looks like:
//
//	url: https://shop.example/cart
//	task: Hide the promo banner and widen the item table.
//	mode: execute
//	max_turns: 30
//	timeout: 5m
//	summary_path: .webforge/run-summary.json
//
// Example usage:
//
//	manifest, _ := headless.LoadManifest("run.yaml")
//	executor, _ := headless.NewExecutor(hub, tabID, manifest)
//
//	if err := executor.Run(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//
// Run returns an error when the run ends in AGENT_ERROR, the timeout
// elapses, or the event stream closes early; the webforge command maps
// that to a non-zero exit so pipelines can gate on the result. When the
// manifest names a summary_path, a machine-readable RunSummary is written
// there after the stream ends regardless of outcome.
package headless
