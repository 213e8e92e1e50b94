package testing

import "os"

func SetTestEnv() {
	err := os.Setenv("ENVIRONMENT", "test")
	if err != nil {
		panic(err)
	}
}
