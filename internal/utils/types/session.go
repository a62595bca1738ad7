package types

type Session struct {
	UserId      string `json:"userId"`
	Fingerprint string `json:"fingerprint"`
	Role        string `json:"role"`
	IssueAt     int64  `json:"issue_at"`
	ExpireAt    int64  `json:"expire_at"`
	Status      string `json:"status"`
}
