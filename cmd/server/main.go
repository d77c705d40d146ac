// Command spark runs the chat relay and match notification server.
//
//	spark serve --config spark.yaml
//	spark migrate
//	spark reap
//
// Every setting can also come from SPARK_* environment variables, for
// example SPARK_DB_HOST or SPARK_TRANSPORT_KIND.
package main

import (
	"fmt"
	"os"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
