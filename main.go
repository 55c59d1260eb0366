package main

import (
	"log"
)

var (
	GitCommit string
	GitTag    string
	BuildTime string
)

const (
	configFilePath = "./config.yml"
	envFilePath    = "./config.env"
)

func main() {
	app, err := NewApp(configFilePath, envFilePath)
	if err != nil {
		log.Fatal("application failed to initialized: ", err)
	}
	err = app.Run()
	if err != nil {
		log.Fatal("application exited. check logs for more details.", err)
	}
}
