package anomaly

import (
	"fmt"
	"math"
	"math/rand"
)

// bottleneckWidth is the narrowest hidden layer. The contraction forces the
// network to learn a low-dimensional manifold of typical demand; it cannot
// pass the identity through.
const bottleneckWidth = 16

// hiddenWidths is the symmetric encoder-decoder shape:
// input -> 64 -> 32 -> 16 -> 32 -> 64 -> output.
var hiddenWidths = []int{64, 32, bottleneckWidth, 32, 64}

// Autoencoder is a fully-connected encoder-decoder with tanh hidden units
// and a linear output layer, trained by minibatch SGD with momentum under
// squared reconstruction loss. Weight init is seeded, so the same training
// set and seed reproduce the same model and therefore the same threshold.
type Autoencoder struct {
	layers   []int
	weights  [][][]float64 // [layer][out][in]
	biases   [][]float64
	velocity [][][]float64
	biasVel  [][]float64
	rng      *rand.Rand
}

// NewAutoencoder builds the network for a given input width. The input must
// be strictly wider than the bottleneck.
func NewAutoencoder(inputWidth int, seed int64) (*Autoencoder, error) {
	if inputWidth <= bottleneckWidth {
		return nil, fmt.Errorf("input width %d must exceed bottleneck width %d", inputWidth, bottleneckWidth)
	}

	layers := make([]int, 0, len(hiddenWidths)+2)
	layers = append(layers, inputWidth)
	layers = append(layers, hiddenWidths...)
	layers = append(layers, inputWidth)

	a := &Autoencoder{layers: layers, rng: rand.New(rand.NewSource(seed))}
	for l := 0; l < len(layers)-1; l++ {
		in, out := layers[l], layers[l+1]
		scale := math.Sqrt(1.0 / float64(in))

		w := make([][]float64, out)
		v := make([][]float64, out)
		for o := 0; o < out; o++ {
			w[o] = make([]float64, in)
			v[o] = make([]float64, in)
			for i := 0; i < in; i++ {
				w[o][i] = a.rng.NormFloat64() * scale
			}
		}
		a.weights = append(a.weights, w)
		a.velocity = append(a.velocity, v)
		a.biases = append(a.biases, make([]float64, out))
		a.biasVel = append(a.biasVel, make([]float64, out))
	}
	return a, nil
}

// InputWidth returns the width of the input and output layers
func (a *Autoencoder) InputWidth() int { return a.layers[0] }

// Train fits the network to samples for a fixed number of epochs
func (a *Autoencoder) Train(samples [][]float64, epochs, batchSize int, learningRate float64) error {
	if len(samples) == 0 {
		return fmt.Errorf("no training samples")
	}
	for _, s := range samples {
		if len(s) != a.InputWidth() {
			return fmt.Errorf("sample width %d does not match input width %d", len(s), a.InputWidth())
		}
	}
	if batchSize < 1 {
		batchSize = 1
	}

	const momentum = 0.9

	order := make([]int, len(samples))
	for i := range order {
		order[i] = i
	}

	for epoch := 0; epoch < epochs; epoch++ {
		a.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		for start := 0; start < len(order); start += batchSize {
			end := start + batchSize
			if end > len(order) {
				end = len(order)
			}

			wGrads, bGrads := a.zeroGrads()
			for _, idx := range order[start:end] {
				a.accumulateGrads(samples[idx], wGrads, bGrads)
			}

			n := float64(end - start)
			for l := range a.weights {
				for o := range a.weights[l] {
					for i := range a.weights[l][o] {
						a.velocity[l][o][i] = momentum*a.velocity[l][o][i] - learningRate*wGrads[l][o][i]/n
						a.weights[l][o][i] += a.velocity[l][o][i]
					}
					a.biasVel[l][o] = momentum*a.biasVel[l][o] - learningRate*bGrads[l][o]/n
					a.biases[l][o] += a.biasVel[l][o]
				}
			}
		}
	}
	return nil
}

// Reconstruct runs one forward pass
func (a *Autoencoder) Reconstruct(input []float64) []float64 {
	activations, _ := a.forward(input)
	return activations[len(activations)-1]
}

// ReconstructionError returns the mean squared error between input and its
// reconstruction, the anomaly signal.
func (a *Autoencoder) ReconstructionError(input []float64) float64 {
	output := a.Reconstruct(input)
	sum := 0.0
	for i := range input {
		diff := input[i] - output[i]
		sum += diff * diff
	}
	return sum / float64(len(input))
}

// forward returns post-activation values per layer (activations[0] is the
// input) plus pre-activation values for backprop.
func (a *Autoencoder) forward(input []float64) ([][]float64, [][]float64) {
	activations := make([][]float64, len(a.layers))
	preacts := make([][]float64, len(a.layers)-1)
	activations[0] = input

	last := len(a.weights) - 1
	for l := range a.weights {
		out := make([]float64, len(a.weights[l]))
		pre := make([]float64, len(a.weights[l]))
		for o := range a.weights[l] {
			z := a.biases[l][o]
			for i, w := range a.weights[l][o] {
				z += w * activations[l][i]
			}
			pre[o] = z
			if l == last {
				out[o] = z // linear output layer
			} else {
				out[o] = math.Tanh(z)
			}
		}
		preacts[l] = pre
		activations[l+1] = out
	}
	return activations, preacts
}

func (a *Autoencoder) accumulateGrads(sample []float64, wGrads [][][]float64, bGrads [][]float64) {
	activations, preacts := a.forward(sample)
	last := len(a.weights) - 1

	// Output delta for squared loss with linear output.
	output := activations[len(activations)-1]
	delta := make([]float64, len(output))
	for o := range output {
		delta[o] = output[o] - sample[o]
	}

	for l := last; l >= 0; l-- {
		for o := range a.weights[l] {
			bGrads[l][o] += delta[o]
			for i := range a.weights[l][o] {
				wGrads[l][o][i] += delta[o] * activations[l][i]
			}
		}

		if l == 0 {
			break
		}

		prev := make([]float64, a.layers[l])
		for i := 0; i < a.layers[l]; i++ {
			sum := 0.0
			for o := range a.weights[l] {
				sum += a.weights[l][o][i] * delta[o]
			}
			t := math.Tanh(preacts[l-1][i])
			prev[i] = sum * (1 - t*t)
		}
		delta = prev
	}
}

func (a *Autoencoder) zeroGrads() ([][][]float64, [][]float64) {
	wGrads := make([][][]float64, len(a.weights))
	bGrads := make([][]float64, len(a.biases))
	for l := range a.weights {
		wGrads[l] = make([][]float64, len(a.weights[l]))
		for o := range a.weights[l] {
			wGrads[l][o] = make([]float64, len(a.weights[l][o]))
		}
		bGrads[l] = make([]float64, len(a.biases[l]))
	}
	return wGrads, bGrads
}
