// ABOUTME: Entry point for the merti terminal client
// ABOUTME: Talks to the chat and scrape webhooks directly from the shell

package main

func main() {
	Execute()
}
