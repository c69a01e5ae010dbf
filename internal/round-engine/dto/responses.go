package dto

import "time"

type PlaceWagerResponse struct {
	WagerID string `json:"wagerId"`
	RoundID string `json:"roundId"`
	Status  string `json:"status"` // PENDING
}

type WagerResponse struct {
	WagerID    string    `json:"wagerId"`
	Account    string    `json:"account"`
	RoundID    string    `json:"roundId"`
	Bin        string    `json:"bin"`
	Amount     int64     `json:"amount"`
	Status     string    `json:"status"`
	AdmittedAt time.Time `json:"admittedAt"`
}

type RoundResponse struct {
	RoundID     string     `json:"roundId"`
	Number      int64      `json:"number"`
	Status      string     `json:"status"`
	Trashcan    int64      `json:"trashcan"`
	Trapcan     int64      `json:"trapcan"`
	Ratdumpster int64      `json:"ratdumpster"`
	TotalPot    int64      `json:"totalPot"`
	WinningBin  string     `json:"winningBin,omitempty"`
	OpenedAt    time.Time  `json:"openedAt"`
	ExpiresAt   time.Time  `json:"expiresAt"`
	EndedAt     *time.Time `json:"endedAt,omitempty"`
}

type AccountResponse struct {
	Account     string `json:"account"`
	TotalWagers int64  `json:"totalWagers"`
	TotalWins   int64  `json:"totalWins"`
	FavoriteBin string `json:"favoriteBin,omitempty"`
}

type TreasuryEntryResponse struct {
	Proof     string    `json:"proof"`
	Amount    int64     `json:"amount"`
	Direction string    `json:"direction"` // IN | OUT | FEE
	Account   string    `json:"account"`
	CreatedAt time.Time `json:"createdAt"`
}
