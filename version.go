package sing

// Version is replaced at link time.
var Version = "unknown"
