// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package version

// Version is the gateway version string. Release builds override it via
// -ldflags "-X github.com/modelgate/modelgate/internal/version.Version=vX.Y.Z".
var Version = "dev"
