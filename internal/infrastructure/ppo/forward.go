package ppo

import (
	domain "github.com/seqtune/seqtune/internal/domain/ppo"
)

// batchedForwardPass runs the live and reference policies over the batch
// in chunks of ForwardBatchSize and slices out the response-aligned
// windows of each example.
//
// With query length Lq and response length Lr, the response occupies
// positions [Lq-1, Lq+Lr-1) of the next-token-shifted logprob sequence,
// and positions [Lq-2, Lq+Lr-2) of the value sequence: the value at
// position i estimates the return before the action at i is consumed.
func (t *Trainer) batchedForwardPass(queries, responses [][]int64) (logprobs, refLogprobs, values [][]float64, err error) {
	bs := t.config.BatchSize
	fbs := t.config.ForwardBatchSize
	if bs%fbs != 0 {
		return nil, nil, nil, &domain.DivisibilityError{BatchSize: bs, ForwardBatchSize: fbs}
	}

	logprobs = make([][]float64, 0, bs)
	refLogprobs = make([][]float64, 0, bs)
	values = make([][]float64, 0, bs)

	for i := 0; i < bs/fbs; i++ {
		queryChunk := queries[i*fbs : (i+1)*fbs]
		responseChunk := responses[i*fbs : (i+1)*fbs]

		inputs := make([][]int64, fbs)
		for j := 0; j < fbs; j++ {
			inputs[j] = concat(queryChunk[j], responseChunk[j])
		}
		batch := t.collator.Collate(inputs)

		out, err := t.policy.Forward(batch)
		if err != nil {
			return nil, nil, nil, err
		}
		refOut, err := t.ref.Forward(batch)
		if err != nil {
			return nil, nil, nil, err
		}

		for j := 0; j < fbs; j++ {
			shifted := logprobsFromLogits(out.Logits[j], inputs[j])
			refShifted := logprobsFromLogits(refOut.Logits[j], inputs[j])

			start := len(queryChunk[j]) - 1
			end := len(queryChunk[j]) + len(responseChunk[j]) - 1
			logprobs = append(logprobs, shifted[start:end])
			refLogprobs = append(refLogprobs, refShifted[start:end])
			values = append(values, out.Values[j][start-1:end-1])
		}
	}
	return logprobs, refLogprobs, values, nil
}

func concat(query, response []int64) []int64 {
	out := make([]int64, 0, len(query)+len(response))
	out = append(out, query...)
	out = append(out, response...)
	return out
}
