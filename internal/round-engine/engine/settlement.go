package engine

import (
	"math/rand"
)

// OutcomeRule escolhe o bin vencedor a partir dos totais congelados.
// As duas variantes produzem sempre exatamente um vencedor, inclusive com
// pote zerado.
type OutcomeRule interface {
	Pick(totals [3]int64) Bin
}

// FavoriteRule: vence o bin com maior stake agregado; empate mantém a ordem
// de prioridade fixa (trashcan, trapcan, ratdumpster).
type FavoriteRule struct{}

func (FavoriteRule) Pick(totals [3]int64) Bin {
	win := 0
	for i := 1; i < len(totals); i++ {
		if totals[i] > totals[win] {
			win = i
		}
	}
	return Bins[win]
}

// WeightedRule: sorteio com a tabela de probabilidade da casa; sem tabela,
// o peso é inverso ao stake do bin (apostar no menos apostado rende mais
// chance), o que evita o jogo virar trivialmente explorável quando a regra
// favorite é conhecida.
type WeightedRule struct {
	Weights [3]int64           // tabela da casa; zerada => peso inverso ao stake
	Rand    func(n int64) int64 // injetável nos testes; nil usa math/rand
}

func (w WeightedRule) Pick(totals [3]int64) Bin {
	weights := w.Weights
	if weights == [3]int64{} {
		pot := totals[0] + totals[1] + totals[2]
		for i := range weights {
			// +1 garante peso positivo mesmo quando um bin concentra o pote todo
			weights[i] = pot - totals[i] + 1
		}
	}

	var sum int64
	for _, wt := range weights {
		if wt > 0 {
			sum += wt
		}
	}
	if sum == 0 {
		return Bins[0]
	}

	draw := w.rand(sum)
	for i, wt := range weights {
		if wt <= 0 {
			continue
		}
		if draw < wt {
			return Bins[i]
		}
		draw -= wt
	}
	return Bins[len(Bins)-1]
}

func (w WeightedRule) rand(n int64) int64 {
	if w.Rand != nil {
		return w.Rand(n)
	}
	return rand.Int63n(n)
}

// PayoutPolicy determina o multiplicador de pagamento do bin vencedor.
type PayoutPolicy interface {
	Multiplier(winning Bin, totals [3]int64) float64
}

// PotSharePolicy: multiplier = pote total / total do bin vencedor.
// Zero quando ninguém apostou no vencedor (nada a pagar).
type PotSharePolicy struct{}

func (PotSharePolicy) Multiplier(winning Bin, totals [3]int64) float64 {
	winTotal := totals[winning.Index()]
	if winTotal == 0 {
		return 0
	}
	pot := totals[0] + totals[1] + totals[2]
	return float64(pot) / float64(winTotal)
}

// MultiplierPolicy: tabela estática por bin, independente do pote.
// Default da casa: dois bins comuns pagando baixo e o raro pagando 10x.
type MultiplierPolicy struct {
	Table [3]float64
}

func (p MultiplierPolicy) Multiplier(winning Bin, totals [3]int64) float64 {
	return p.Table[winning.Index()]
}
