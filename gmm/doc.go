// Package gmm scores feature vectors against the Gaussians of a mixture
// model.
//
// A Model is built from caller-owned parameter tables (means, inverse
// variances, packed inverse covariances, determinants and a covariance tying
// map) and turned into per-Gaussian caches by Precalculate. Evaluate scores
// one vector against one Gaussian; EvaluateBatch scores a whole feature
// matrix, optionally maps Gaussian scores to mixture scores and clamps the
// result.
//
// Three kernels compute the Mahalanobis distance:
//
//   - scalar: alpha - 2·beta·x + Σ ivar·x² + term C, where term C is the
//     off-diagonal part of xᵗ·A·x and is shared by all Gaussians tied to the
//     same covariance class for the duration of one feature vector;
//   - ldl: Σ D·(U·x - beta')² with A = Uᵗ·D·U, optionally sparsified;
//   - simd: hᵗ·A·h with h = mean - x, computed block-wise with vector
//     instructions; selected only when requested, when the host passes the
//     capability check and when the ldl kernel is off.
//
// A Model is not safe for concurrent use: the shared term cache is written
// while a feature vector is scored.
package gmm
