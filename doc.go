// gptbatch project doc.go

/*
Package gptbatch sends a batch of chat completion requests to an OpenAI compatible endpoint using the go-openai library and hands the answers back in the order the inputs were given.

Every input is sent as its own request, all of them at once. The number of requests actually on the wire is bounded by the connection pool of the Client returned by NewClient, so the executor itself never queues work. Results arrive out of order; RunBatch records each arrival, reports progress, and sorts the collected results back into input order before returning.

A failed request never aborts a batch. The failure is stored on the Result for that item and rendered by Result.Text as "request failed: <details>", so a batch of N inputs always yields N results.
*/
package gptbatch
