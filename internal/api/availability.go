package api

import (
	"context"
	"math"
	"net/http"

	"github.com/adiselav/CabanApp/internal/domain"
	"github.com/adiselav/CabanApp/internal/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	availabilityServiceName = "cabanapp.booking.v1.AvailabilityService"
	checkAvailabilityMethod = "/" + availabilityServiceName + "/CheckAvailability"
)

// AvailabilityServer answers room availability queries. Requests and replies
// are google.protobuf.Struct messages using the JSON API field names.
type AvailabilityServer interface {
	CheckAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var availabilityServiceDesc = grpc.ServiceDesc{
	ServiceName: availabilityServiceName,
	HandlerType: (*AvailabilityServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CheckAvailability", Handler: checkAvailabilityHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cabanapp/booking/v1/availability.proto",
}

func RegisterAvailabilityServer(s grpc.ServiceRegistrar, srv AvailabilityServer) {
	s.RegisterService(&availabilityServiceDesc, srv)
}

func checkAvailabilityHandler(
	srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AvailabilityServer).CheckAvailability(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: checkAvailabilityMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AvailabilityServer).CheckAvailability(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// AvailabilityService mirrors GET /cabins/{id}/rooms/available.
type AvailabilityService struct {
	booking domain.BookingService
}

func NewAvailabilityService(booking domain.BookingService) *AvailabilityService {
	return &AvailabilityService{booking: booking}
}

func (s *AvailabilityService) CheckAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()

	cabinID, ok := wholeNumber(fields["cabin_id"])
	if !ok || cabinID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "cabin_id is required")
	}
	checkIn, err := models.ParseDate(fields["check_in"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid check_in; expected YYYY-MM-DD")
	}
	checkOut, err := models.ParseDate(fields["check_out"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid check_out; expected YYYY-MM-DD")
	}
	guests, ok := wholeNumber(fields["guests"])
	if !ok || guests < 0 {
		return nil, status.Error(codes.InvalidArgument, "invalid guests")
	}

	rooms, err := s.booking.CheckAvailability(ctx, cabinID, checkIn, checkOut, int(guests))
	if err != nil {
		return nil, grpcError(err)
	}

	list := make([]any, 0, len(rooms))
	for _, room := range rooms {
		list = append(list, map[string]any{
			"id":              room.ID,
			"number":          room.Number,
			"capacity":        room.Capacity,
			"price_per_night": room.PricePerNight.String(),
		})
	}

	resp, err := structpb.NewStruct(map[string]any{
		"cabin_id":  cabinID,
		"check_in":  checkIn.String(),
		"check_out": checkOut.String(),
		"rooms":     list,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return resp, nil
}

// wholeNumber reads an optional integral number field; an absent field is 0.
func wholeNumber(v *structpb.Value) (int64, bool) {
	if v == nil {
		return 0, true
	}
	if _, isNumber := v.GetKind().(*structpb.Value_NumberValue); !isNumber {
		return 0, false
	}
	n := v.GetNumberValue()
	if n != math.Trunc(n) || math.Abs(n) > 1<<53 {
		return 0, false
	}
	return int64(n), true
}

// grpcError maps a service error onto the matching status code.
func grpcError(err error) error {
	var code codes.Code
	switch statusFor(err) {
	case http.StatusBadRequest:
		code = codes.InvalidArgument
	case http.StatusNotFound:
		code = codes.NotFound
	case http.StatusForbidden:
		code = codes.PermissionDenied
	case http.StatusConflict:
		code = codes.AlreadyExists
	case http.StatusTooManyRequests:
		code = codes.ResourceExhausted
	default:
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(code, err.Error())
}
