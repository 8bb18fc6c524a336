package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/ecomarket/internal/server/admincli"
)

func main() {

	ctx := context.Background()
	if err := admincli.Run(ctx, os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("%v", err)
	}

}
