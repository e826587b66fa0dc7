// Package e621 implements the small part of the e621 API the downloader
// needs: pools, posts and their media files.
//
// Every request waits on a shared rate limiter (e621 permits at most two
// requests per second) and goes through the retry policy. A descriptive
// User-Agent is always sent; basic auth with username and API key is added
// for requests to the API host when credentials are configured.
//
// Pool posts are returned as PostRef values carrying only the post ID and
// its 1-based page. Callers resolve them lazily with ResolvePost so posts
// already on disk never cost a request.
package e621
