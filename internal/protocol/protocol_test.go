package protocol

import (
	"strings"
	"testing"

	"github.com/vizstack/broker/internal/resource"
	"github.com/vizstack/broker/internal/vserr"
)

func mustDecode(t *testing.T, payload string) *Request {
	t.Helper()
	req, err := Decode([]byte(payload))
	if err != nil {
		t.Fatalf("Decode(%q) error = %v", payload, err)
	}
	return req
}

func wantCode(t *testing.T, err error, code vserr.Code) {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error")
	}
	ve, ok := vserr.As(err)
	if !ok {
		t.Fatalf("expected a *vserr.Error, got %T: %v", err, err)
	}
	if ve.Code != code {
		t.Fatalf("error code = %v, want %v (message %q)", ve.Code, code, ve.Message)
	}
}

func TestDecodeClientHello(t *testing.T) {
	req := mustDecode(t, "<ssm><client><cleanupOnDisconnect>1</cleanupOnDisconnect></client></ssm>")
	if req.Command != CmdClientHello {
		t.Fatalf("Command = %q, want %q", req.Command, CmdClientHello)
	}
	if !req.Hello.CleanupOnDisconnect {
		t.Error("CleanupOnDisconnect = false, want true")
	}

	req = mustDecode(t, "<ssm><client><cleanupOnDisconnect>0</cleanupOnDisconnect></client></ssm>")
	if req.Hello.CleanupOnDisconnect {
		t.Error("CleanupOnDisconnect = true, want false")
	}
}

func TestDecodeAllocateWithListAndSearchNode(t *testing.T) {
	payload := `<ssm><allocate>` +
		`<list><serverconfig/><gpu/></list>` +
		`<gpu host="n1"/>` +
		`<search_node>n0</search_node>` +
		`<search_node>n1</search_node>` +
		`</allocate></ssm>`

	req := mustDecode(t, payload)
	if req.Command != CmdAllocate {
		t.Fatalf("Command = %q, want %q", req.Command, CmdAllocate)
	}
	a := req.Allocate
	if len(a.Items) != 2 {
		t.Fatalf("decoded %d items, want 2", len(a.Items))
	}
	if len(a.Items[0].List) != 2 {
		t.Fatalf("first item has %d list entries, want 2", len(a.Items[0].List))
	}
	gpu, ok := a.Items[1].Single.(*resource.GPU)
	if !ok {
		t.Fatalf("second item = %T, want *resource.GPU", a.Items[1].Single)
	}
	if gpu.Host != "n1" {
		t.Errorf("gpu host = %q, want n1", gpu.Host)
	}
	if len(a.SearchNodes) != 2 || a.SearchNodes[0] != "n0" || a.SearchNodes[1] != "n1" {
		t.Errorf("SearchNodes = %v, want [n0 n1]", a.SearchNodes)
	}
}

func TestDecodeAllocateRequiresAnItem(t *testing.T) {
	_, err := Decode([]byte("<ssm><allocate></allocate></ssm>"))
	wantCode(t, err, vserr.IncorrectValue)
}

func TestDecodeAllocID(t *testing.T) {
	req := mustDecode(t, "<ssm><attach><allocId>7</allocId></attach></ssm>")
	if req.Command != CmdAttach || req.Attach.AllocID != 7 {
		t.Fatalf("got %q/%+v, want attach of allocation 7", req.Command, req.Attach)
	}

	req = mustDecode(t, "<ssm><deallocate><allocId>12</allocId></deallocate></ssm>")
	if req.Command != CmdDeallocate || req.Deallocate.AllocID != 12 {
		t.Fatalf("got %q/%+v, want deallocate of allocation 12", req.Command, req.Deallocate)
	}
}

func TestDecodeWaitXState(t *testing.T) {
	payload := `<ssm><wait_x_state>` +
		`<allocId>3</allocId><newState>1</newState><timeout>30</timeout>` +
		`<serverconfig display="0" host="n0"/>` +
		`</wait_x_state></ssm>`

	req := mustDecode(t, payload)
	w := req.WaitXState
	if w.AllocID != 3 || w.NewState != 1 || w.Timeout != 30 {
		t.Fatalf("decoded %+v, want allocId=3 newState=1 timeout=30", w)
	}
	if len(w.Servers) != 1 || w.Servers[0].Host != "n0" {
		t.Fatalf("Servers = %+v, want one server on n0", w.Servers)
	}
}

func TestDecodeWaitXStateRejectsBadState(t *testing.T) {
	_, err := Decode([]byte("<ssm><wait_x_state><allocId>3</allocId><newState>2</newState></wait_x_state></ssm>"))
	wantCode(t, err, vserr.IncorrectValue)
}

func TestDecodeQueryAllocationOptionalID(t *testing.T) {
	req := mustDecode(t, "<ssm><query_allocation></query_allocation></ssm>")
	if req.QueryAllocation.AllocID != nil {
		t.Fatalf("AllocID = %v, want nil for an unrestricted query", *req.QueryAllocation.AllocID)
	}

	req = mustDecode(t, "<ssm><query_allocation><allocId>4</allocId></query_allocation></ssm>")
	if req.QueryAllocation.AllocID == nil || *req.QueryAllocation.AllocID != 4 {
		t.Fatalf("AllocID = %v, want 4", req.QueryAllocation.AllocID)
	}
}

func TestDecodeRejectsMalformedDocuments(t *testing.T) {
	payloads := []string{
		"",
		"not xml at all",
		"<wrong><client/></wrong>",
		"<ssm><no_such_command/></ssm>",
		"<ssm><allocate><gpu/>", // truncated
	}
	for _, p := range payloads {
		_, err := Decode([]byte(p))
		wantCode(t, err, vserr.BadProtocol)
	}
}

func TestEncodeErrorResponseCarriesStatusAndMessage(t *testing.T) {
	resp := FromError(vserr.Newf(vserr.UserError, "no free GPU on n0"))
	out, err := Encode(resp)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	doc := string(out)
	if !strings.Contains(doc, "<message>no free GPU on n0</message>") {
		t.Errorf("encoded response %q lacks the message element", doc)
	}
	if strings.Contains(doc, "<return_value>") {
		t.Errorf("error response %q must not carry a return_value", doc)
	}
}

func TestEncodeAllocationResponse(t *testing.T) {
	idx := 0
	alloc := &resource.Allocation{
		ID: 9,
		Tree: []resource.TreeNode{
			{List: []resource.Item{
				&resource.Server{Index: &idx, Host: "n0"},
				&resource.GPU{Index: &idx, Host: "n0"},
			}},
		},
	}
	out, err := Encode(Response{Allocation: alloc})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	doc := string(out)
	for _, want := range []string{"<status>0</status>", "<allocId>9</allocId>", "<list>", "serverconfig", "gpu"} {
		if !strings.Contains(doc, want) {
			t.Errorf("encoded response %q lacks %q", doc, want)
		}
	}
}
