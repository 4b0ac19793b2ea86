package domain

// IssueStateOpen is the only upstream issue state the fetcher requests.
const IssueStateOpen = "open"
