// Command scoutd serves the basketball scouting assistant.
package main

func main() {
	Execute()
}
