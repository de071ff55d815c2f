package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/judwhite/go-svc"
)

var (
	cfgFile      string
	outputFormat string
	services     stringList
	debug        bool
	metricsAddr  string
	apiAddr      string
	printVersion bool
)

func init() {
	flag.Var(&services, "L", "service list, e.g. echo://:8080?maxRequests=100")
	flag.StringVar(&cfgFile, "C", "", "configuration file")
	flag.BoolVar(&printVersion, "V", false, "print version")
	flag.StringVar(&outputFormat, "O", "", "print the merged configuration as yaml and exit, format: yaml")
	flag.BoolVar(&debug, "D", false, "debug mode")
	flag.StringVar(&metricsAddr, "metrics", "", "metrics service address")
	flag.StringVar(&apiAddr, "api", "", "api service address, e.g. user:pass@:18080?pathPrefix=/admin")
}

func main() {
	flag.Parse()

	if printVersion {
		fmt.Fprintf(os.Stdout, "h2engine %s (%s %s/%s)\n",
			version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		os.Exit(0)
	}

	p := &program{}
	if err := svc.Run(p); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
