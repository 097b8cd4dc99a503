// Command dispatch runs tasks and workflows against named targets, either
// in-process from the command line or behind the HTTP API (dispatch serve).
package main

func main() {
	Execute()
}
