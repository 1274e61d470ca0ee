//go:build windows

package osutils

import (
	"fmt"
	"log"
	"os/exec"
	"strconv"
	"strings"

	"golang.org/x/sys/windows"
)

// IsAdmin checks if the current process has administrative privileges
func IsAdmin() bool {
	var token windows.Token
	h, _ := windows.GetCurrentProcess()
	if err := windows.OpenProcessToken(h, windows.TOKEN_QUERY, &token); err != nil {
		return false
	}
	defer token.Close()

	var sid *windows.SID
	err := windows.AllocateAndInitializeSid(
		&windows.SECURITY_NT_AUTHORITY,
		2,
		windows.SECURITY_BUILTIN_DOMAIN_RID,
		windows.DOMAIN_ALIAS_RID_ADMINS,
		0, 0, 0, 0, 0, 0,
		&sid,
	)
	if err != nil {
		return false
	}
	defer windows.FreeSid(sid)

	member, err := token.IsMember(sid)
	return err == nil && member
}

// EnsureFirewallRule makes sure inbound TCP on port is allowed, asking for
// elevation through UAC when the process is not an administrator.
func EnsureFirewallRule(port int) error {
	out, err := exec.Command("netsh", "advfirewall", "firewall", "show", "rule", "name="+RuleName).CombinedOutput()
	if err == nil && strings.Contains(string(out), strconv.Itoa(port)) && strings.Contains(string(out), "Allow") {
		log.Printf("Firewall: rule %q already allows port %d", RuleName, port)
		return nil
	}

	ps := fmt.Sprintf(
		"Remove-NetFirewallRule -DisplayName '%s' -ErrorAction SilentlyContinue; New-NetFirewallRule -DisplayName '%s' -Direction Inbound -LocalPort %d -Protocol TCP -Action Allow -Profile Private,Domain",
		RuleName, RuleName, port,
	)

	if IsAdmin() {
		if out, err := exec.Command("powershell", "-NoProfile", "-Command", ps).CombinedOutput(); err != nil {
			return fmt.Errorf("create firewall rule: %w (output: %s)", err, out)
		}
		log.Printf("Firewall: allowed inbound port %d", port)
		return nil
	}

	log.Println("Firewall: not elevated, requesting UAC to add the rule")
	verb, _ := windows.UTF16PtrFromString("runas")
	exe, _ := windows.UTF16PtrFromString("powershell.exe")
	args, _ := windows.UTF16PtrFromString(fmt.Sprintf("-NoProfile -WindowStyle Hidden -Command \"%s\"", ps))
	if err := windows.ShellExecute(0, verb, exe, args, nil, int32(windows.SW_HIDE)); err != nil {
		return fmt.Errorf("launch elevated powershell: %w", err)
	}
	return nil
}
