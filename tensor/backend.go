// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import "github.com/born-ml/customgrad/internal/tensor"

// Backend defines the primitive operations a compute backend supplies:
// broadcasting element-wise arithmetic, 2D MatMul, Reshape, Transpose,
// Expand, scalar arithmetic, Exp, Log, ReLU, reductions and Argmax.
//
// Implementations:
//   - backend/cpu: pure Go, row-parallel kernels
//
// Decorator backends:
//   - autodiff: records every primitive on a gradient tape
type Backend = tensor.Backend
