package policy

// containersPlugin covers podman and docker. Inspection subcommands are
// read-only; state changes require approval, and container removal is HIGH
// risk because it discards writable layers.
func containersPlugin() *Plugin {
	return NewPlugin("containers", "containers",
		"Podman and Docker container management",
		autoRead("podman ps",
			"List containers",
			"Read-only container listing",
			"podman ps", "podman ps -a"),
		autoRead("podman inspect",
			"Inspect container",
			"Read-only container details",
			"podman inspect web", "podman inspect --format '{{.State.Status}}' web"),
		autoRead("podman logs",
			"Container logs",
			"Read-only container log output",
			"podman logs web", "podman logs --tail 100 web"),
		autoRead("podman images",
			"List images",
			"Read-only image listing",
			"podman images"),
		autoRead("podman stats",
			"Container resource usage",
			"Read-only resource statistics",
			"podman stats --no-stream"),
		autoRead("podman top",
			"Container processes",
			"Read-only process listing inside a container",
			"podman top web"),
		manualExec("podman restart", RiskMedium,
			"Restart container",
			"Service interruption, requires approval",
			"podman restart web"),
		manualExec("podman start", RiskMedium,
			"Start container",
			"Container state change, requires approval",
			"podman start web"),
		manualExec("podman stop", RiskMedium,
			"Stop container",
			"Service interruption, requires approval",
			"podman stop web"),
		manualExec("podman rm", RiskHigh,
			"Remove container",
			"Destroys container state, requires approval",
			"podman rm web", "podman rm -f web"),
		autoRead("docker ps",
			"List containers",
			"Read-only container listing",
			"docker ps", "docker ps -a"),
		autoRead("docker inspect",
			"Inspect container",
			"Read-only container details",
			"docker inspect web"),
		autoRead("docker logs",
			"Container logs",
			"Read-only container log output",
			"docker logs web", "docker logs --tail 100 web"),
		autoRead("docker images",
			"List images",
			"Read-only image listing",
			"docker images"),
		autoRead("docker stats",
			"Container resource usage",
			"Read-only resource statistics",
			"docker stats --no-stream"),
		autoRead("docker top",
			"Container processes",
			"Read-only process listing inside a container",
			"docker top web"),
		manualExec("docker restart", RiskMedium,
			"Restart container",
			"Service interruption, requires approval",
			"docker restart web"),
		manualExec("docker start", RiskMedium,
			"Start container",
			"Container state change, requires approval",
			"docker start web"),
		manualExec("docker stop", RiskMedium,
			"Stop container",
			"Service interruption, requires approval",
			"docker stop web"),
		manualExec("docker rm", RiskHigh,
			"Remove container",
			"Destroys container state, requires approval",
			"docker rm web", "docker rm -f web"),
	)
}
