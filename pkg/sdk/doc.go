// Package shopsight embeds the shopsight image-to-catalog search pipeline in a Go program
// without running the HTTP service.
//
// The client owns a catalog store (Redis, Valkey or an embedded badger database), a vision
// extractor and an optional reranker. Searches go through the same retrieval ladder, scorer and
// telemetry buffer as the service.
//
//	client, _ := shopsight.New(ctx,
//	    shopsight.WithEmbedded(""), // in-memory
//	    shopsight.WithOpenAI(os.Getenv("OPENAI_API_KEY"), "gpt-4o-mini"),
//	)
//	defer client.Close()
//
//	_, _ = client.Catalog().SeedDemo(ctx)
//	resp, _ := client.Search(ctx, imageBytes, "sofá até 3000")
//	for _, r := range resp.Results {
//	    fmt.Println(r.Title, r.MatchBand)
//	}
package shopsight
