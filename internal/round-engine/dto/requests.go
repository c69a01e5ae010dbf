package dto

type PlaceWagerRequest struct {
	Account       string `json:"account"`
	Bin           string `json:"bin"` // "trashcan" | "trapcan" | "ratdumpster"
	Amount        int64  `json:"amount"`
	TransferProof string `json:"transferProof"` // prova da transferência já confirmada pro pool
}
