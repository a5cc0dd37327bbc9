package benevolence

// PublicView 是其他用户查询时返回的数据
type PublicView struct {
	ID      string `json:"id"`
	Author  string `json:"author"`
	Granted bool   `json:"granted"`
}

// OwnerView 是用户查询自己的记录时返回的数据
type OwnerView struct {
	PublicView
	NominationsReceived int64    `json:"nominations"`
	ReportsReceived     int64    `json:"reports"`
	MyVotes             []string `json:"myVotes"`
	MyReports           []string `json:"myReports"`
	VotesLeft           int      `json:"votesLeft"`
}
