package engine

import (
	"errors"
	"time"
)

// Bin é um dos três destinos mutuamente exclusivos de uma aposta.
type Bin string

const (
	BinTrashcan    Bin = "trashcan"
	BinTrapcan     Bin = "trapcan"
	BinRatdumpster Bin = "ratdumpster"
)

// Bins na ordem de prioridade fixa usada para desempate da regra favorite.
var Bins = [3]Bin{BinTrashcan, BinTrapcan, BinRatdumpster}

func (b Bin) Valid() bool {
	return b == BinTrashcan || b == BinTrapcan || b == BinRatdumpster
}

// Index retorna a posição do bin nos arrays de totais/multiplicadores.
func (b Bin) Index() int {
	switch b {
	case BinTrapcan:
		return 1
	case BinRatdumpster:
		return 2
	default:
		return 0
	}
}

type RoundStatus string

const (
	RoundActive   RoundStatus = "ACTIVE"
	RoundSettling RoundStatus = "SETTLING"
	RoundEnded    RoundStatus = "ENDED"
)

type WagerStatus string

const (
	WagerPending WagerStatus = "PENDING"
	WagerPaid    WagerStatus = "PAID"
	WagerLost    WagerStatus = "LOST"
	WagerVoid    WagerStatus = "VOID"
)

type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
	DirectionFee Direction = "FEE"
)

// Round é uma rodada cronometrada com pote próprio e um único bin vencedor.
// Totals acompanha a ordem de Bins; TotalPot é sempre a soma dos três.
type Round struct {
	ID         string
	Number     int64
	Status     RoundStatus
	Totals     [3]int64
	TotalPot   int64
	WinningBin Bin // vazio até a rodada encerrar; imutável depois
	OpenedAt   time.Time
	ExpiresAt  time.Time
	EndedAt    time.Time // zero enquanto não encerra
}

// Total retorna o acumulado apostado no bin.
func (r *Round) Total(b Bin) int64 { return r.Totals[b.Index()] }

// Wager é a aposta de uma conta em um bin dentro de uma rodada.
// O status muda exatamente uma vez, de PENDING para PAID, LOST ou VOID.
type Wager struct {
	ID            string
	Account       string
	RoundID       string
	Bin           Bin
	Amount        int64
	TransferProof string // prova da transferência de entrada; chave de idempotência
	Status        WagerStatus
	AdmittedAt    time.Time
	PayoutProof   string // prova da transferência de pagamento, quando já submetida
}

// TreasuryEntry é o registro imutável de uma movimentação do pool custodial.
type TreasuryEntry struct {
	ID        string
	Proof     string
	Amount    int64
	Direction Direction
	Account   string
	CreatedAt time.Time
}

// Account é o resumo comportamental de uma conta; fundos vivem na rede externa.
type Account struct {
	ID          string
	TotalWagers int64
	TotalWins   int64
	FavoriteBin Bin
}

// Erros de negócio. Input e corrida voltam síncronos pro caller e nunca
// entram no ledger.
var (
	ErrInvalidWagerInput  = errors.New("invalid wager input")
	ErrRoundNotActive     = errors.New("round not active")
	ErrTransferUnverified = errors.New("transfer unverified")
	ErrProofConsumed      = errors.New("transfer proof already consumed")
	ErrNotPending         = errors.New("wager not pending")
	ErrRoundNotFound      = errors.New("round not found")
	ErrWagerNotFound      = errors.New("wager not found")
	ErrAccountNotFound    = errors.New("account not found")
)
