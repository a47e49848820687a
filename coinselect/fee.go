// Package coinselect implements the coin selection policies used to
// satisfy an amount + fee from the wallet's unspent outputs.
package coinselect

// Per-element weight contributions to the base protocol's linear weight
// function. Outputs are the heaviest component because each one carries a
// range proof; this mirrors the fee schedules real UTXO wallets derive
// from serialized transaction size, just expressed in protocol weight
// units instead of bytes.
const (
	weightBase    uint64 = 1
	weightKernel  uint64 = 1
	weightInput   uint64 = 1
	weightOutput  uint64 = 15
	minimumFee    uint64 = 100
)

// Weight returns the base protocol's linear weight for a transaction with
// the given number of kernels, inputs and outputs.
func Weight(numKernels, numInputs, numOutputs int) uint64 {
	return weightBase +
		weightKernel*uint64(numKernels) +
		weightInput*uint64(numInputs) +
		weightOutput*uint64(numOutputs)
}

// Fee computes fee_per_gram * Weight(...), with a single kernel assumed
// (the common case for sender/receiver and pay-to-self builds; coinbase
// and coin-split transactions also only ever carry one kernel).
func Fee(feePerGram uint64, numInputs, numOutputs int) uint64 {
	return feePerGram * Weight(1, numInputs, numOutputs)
}

// CalculateWithMinimum applies Fee but never returns less than the
// protocol's minimum relay fee, the way fee estimation does for
// very-low-fee-rate requests.
func CalculateWithMinimum(feePerGram uint64, numInputs, numOutputs int) uint64 {
	f := Fee(feePerGram, numInputs, numOutputs)
	if f < minimumFee {
		return minimumFee
	}
	return f
}
