package stfgrpc

import (
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/blockberries/stf"
)

// haltStatus encodes a halt as a DataLoss status whose message is
// "kind|height|reason". Other errors pass through unchanged.
func haltStatus(err error) error {
	h, ok := stf.IsHalt(err)
	if !ok {
		return err
	}
	return status.Error(codes.DataLoss,
		fmt.Sprintf("%s|%d|%s", h.Kind, h.Height, h.Reason))
}

// fromStatus rebuilds a *stf.HaltError from a DataLoss status.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.DataLoss {
		return err
	}
	parts := strings.SplitN(st.Message(), "|", 3)
	if len(parts) != 3 {
		return err
	}
	height, perr := strconv.ParseUint(parts[1], 10, 64)
	if perr != nil {
		return err
	}
	return stf.NewHaltError(height, stf.ParseFaultKind(parts[0]), parts[2])
}
