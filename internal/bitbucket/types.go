package bitbucket

// Branch is a repository branch as returned by the branch listing endpoint.
// DisplayID is the identity of a branch within its repository; LatestCommit is
// an opaque commit reference that moves whenever the branch advances.
type Branch struct {
	DisplayID    string `json:"displayId"`
	LatestCommit string `json:"latestCommit"`
}

// Restriction is a branch-permission rule. Matcher.DisplayID carries the
// branch display name the rule applies to.
type Restriction struct {
	ID      int64 `json:"id"`
	Matcher struct {
		DisplayID string `json:"displayId"`
	} `json:"matcher"`
}

type repository struct {
	Name string `json:"name"`
}

// pagedResponse is the Bitbucket Server page envelope. The client requests
// limit=1000 per the upstream defaults; IsLastPage is checked so a truncated
// listing is surfaced instead of silently processed.
type pagedResponse[T any] struct {
	Values     []T  `json:"values"`
	IsLastPage bool `json:"isLastPage"`
}

type commitStats struct {
	// CommitterTimestamp is epoch milliseconds.
	CommitterTimestamp int64 `json:"committerTimestamp"`
}
