// docker-reroll restarts a compose service without downtime. It is meant to be
// installed as a docker CLI plugin and run as 'docker reroll <service>'.
package main

import (
	"os"

	"github.com/ngrok/reroll/cmd/docker-reroll/app"
)

func main() {
	os.Exit(app.Execute(os.Args[1:]))
}
